package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://pharmadesk@localhost/pharmadesk")
	t.Setenv("JWT_SECRET", "secret")
}

func TestFromEnv_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := fromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, int32(20), cfg.Database.MaxConns)
	assert.Equal(t, 12*time.Hour, cfg.JWT.TTL)
	assert.Equal(t, "14", cfg.Sales.TaxRate.String())
	assert.Equal(t, "FAC", cfg.Sales.InvoicePrefix)
	assert.Equal(t, 3, cfg.Sales.NumberAttempts)
	assert.Equal(t, "Africa/Nouakchott", cfg.Sales.Location.String())
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "pharmacy.events", cfg.Kafka.Topic)
	assert.Equal(t, 5*time.Second, cfg.Outbox.PollInterval)
	assert.True(t, cfg.MetricsEnabled)
}

func TestFromEnv_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("TAX_RATE", "16.5")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("DASHBOARD_CACHE_TTL", "1m")
	t.Setenv("GZIP_ENABLED", "false")
	t.Setenv("DB_MAX_CONNS", "not-a-number")

	cfg, err := fromEnv()
	require.NoError(t, err)

	assert.False(t, cfg.IsDevelopment())
	assert.False(t, cfg.Log.Development)
	assert.Equal(t, "16.5", cfg.Sales.TaxRate.String())
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, time.Minute, cfg.Redis.DashboardTTL)
	assert.False(t, cfg.GzipEnabled)
	assert.Equal(t, int32(20), cfg.Database.MaxConns, "unparsable values fall back to the default")
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing required", map[string]string{"DATABASE_URL": "", "JWT_SECRET": ""}, "DATABASE_URL, JWT_SECRET"},
		{"tax rate", map[string]string{"TAX_RATE": "120"}, "TAX_RATE"},
		{"timezone", map[string]string{"TIMEZONE": "Mars/Olympus"}, "TIMEZONE"},
		{"retries", map[string]string{"INVOICE_NUMBER_RETRIES": "0"}, "INVOICE_NUMBER_RETRIES"},
		{"pool bounds", map[string]string{"DB_MIN_CONNS": "30"}, "DB_MIN_CONNS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := fromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
