/*
Copyright 2023 Alexander Bartolomey (github@alexanderbartolomey.de)

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package geoippg is an alternate GeoIP source for pkg/enrich.GeoIP backed
// by a Postgres table of CIDR ranges, for deployments that maintain their
// own geolocation data in a database instead of shipping a flat file. The
// connection-pool setup mirrors reshwanthmanupati-NetWeaver's
// pkg/database/client.go (Config struct, connString assembly,
// pgxpool.ParseConfig/NewWithConfig, pool tuning, startup Ping).
package geoippg

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds the Postgres connection parameters.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	PoolSize int
}

// Source is a pgx/v5-backed GeoIP lookup. It satisfies pkg/enrich.GeoIP.
type Source struct {
	pool *pgxpool.Pool
}

// New opens a pool against config and pings it before returning, so
// startup fails fast on a bad connection string instead of on the first
// lookup.
func New(ctx context.Context, config Config) (*Source, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s pool_max_conns=%d",
		config.Host, config.Port, config.Database, config.User, config.Password, config.PoolSize,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("geoippg: parse config: %w", err)
	}

	poolConfig.MaxConns = int32(config.PoolSize)
	poolConfig.MinConns = int32(config.PoolSize / 4)
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("geoippg: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("geoippg: ping: %w", err)
	}

	return &Source{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Source) Close() {
	s.pool.Close()
}

// CountryCode looks up ip's country by containing CIDR range, most
// specific prefix first.
func (s *Source) CountryCode(ip net.IP) (string, bool) {
	const query = `
		SELECT country_code FROM geoip_ranges
		WHERE network >> $1
		ORDER BY masklen(network) DESC
		LIMIT 1`

	var cc string
	err := s.pool.QueryRow(context.Background(), query, ip.String()).Scan(&cc)
	if err != nil || cc == "" {
		return "", false
	}
	return cc, true
}

// ASNumber looks up ip's announcing AS number and name by containing CIDR
// range, most specific prefix first.
func (s *Source) ASNumber(ip net.IP) (uint32, string, bool) {
	const query = `
		SELECT as_number, as_name FROM geoip_ranges
		WHERE network >> $1
		ORDER BY masklen(network) DESC
		LIMIT 1`

	var asNum uint32
	var asName string
	err := s.pool.QueryRow(context.Background(), query, ip.String()).Scan(&asNum, &asName)
	if err != nil || asNum == 0 {
		return 0, "", false
	}
	return asNum, asName, true
}
