package db

import "github.com/smallbiznis/cargosettle/internal/config"

// Config carries the connection settings the pool is opened with, decoupled
// from the wider application configuration.
type Config struct {
	Type            string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxIdleConn     int
	MaxOpenConn     int
	ConnMaxLifetime int
	ConnMaxIdleTime int
}

// NewConfig maps application settings onto the connection config.
func NewConfig(app config.Config) Config {
	return Config{
		Type:            app.DBType,
		Host:            app.DBHost,
		Port:            app.DBPort,
		Name:            app.DBName,
		User:            app.DBUser,
		Password:        app.DBPassword,
		SSLMode:         app.DBSSLMode,
		MaxIdleConn:     app.DBMaxIdleConn,
		MaxOpenConn:     app.DBMaxOpenConn,
		ConnMaxLifetime: app.DBConnMaxLifetime,
		ConnMaxIdleTime: app.DBConnMaxIdleTime,
	}
}
