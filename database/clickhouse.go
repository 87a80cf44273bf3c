package database

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"pulsetrack/api/config"
)

type ClickHouseClient struct {
	Conn driver.Conn
	log  *zap.Logger
}

func NewClickHouseDB(cfg *config.Config, log *zap.Logger) (*ClickHouseClient, error) {
	options := &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.ClickHouseHost, cfg.ClickHousePort)},
		Auth: clickhouse.Auth{
			Database: cfg.ClickHouseDB,
			Username: cfg.ClickHouseUser,
			Password: cfg.ClickHousePassword,
		},
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{{Name: "pulsetrack-api", Version: "1.0.0"}},
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout: time.Second * 5,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse via Native TCP: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	client := &ClickHouseClient{Conn: conn, log: log}
	if err := client.initSchema(ctx); err != nil {
		return nil, err
	}

	log.Info("Connected to ClickHouse via Native TCP",
		zap.String("host", cfg.ClickHouseHost),
		zap.Int("port", cfg.ClickHousePort),
		zap.String("database", cfg.ClickHouseDB))
	return client, nil
}

// initSchema creates the append-only events table. Events are never updated or
// deleted, so a plain MergeTree ordered by (tenant_id, timestamp) serves every
// tenant-plus-time-range scan the dashboard issues.
func (c *ClickHouseClient) initSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS analytics_events (
		event_id String,
		tenant_id String,
		event_type LowCardinality(String),
		event_details String,
		session_id String,
		visitor_id String,
		referrer String,
		user_agent String,
		ip_address String,
		timestamp DateTime64(3, 'UTC')
	) ENGINE = MergeTree()
	ORDER BY (tenant_id, timestamp)
	PARTITION BY toYYYYMM(timestamp)
	SETTINGS index_granularity = 8192
	`

	if err := c.Conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create analytics_events table: %w", err)
	}

	return nil
}

func (c *ClickHouseClient) Close() {
	if c.Conn != nil {
		c.Conn.Close()
		c.log.Info("ClickHouse connection closed")
	}
}
