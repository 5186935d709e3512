package database

import (
	"testing"

	"gemwallet/pkg/config"

	"github.com/stretchr/testify/assert"
)

func TestDSN(t *testing.T) {
	c := config.DBConfig{Host: "db", Port: "5432", User: "gem", Password: "pw", Name: "gem_db"}

	assert.Equal(t, "host=db user=gem password=pw dbname=gem_db port=5432 sslmode=disable TimeZone=UTC", PostgresDSN(c))
	assert.Equal(t, "postgres://gem:pw@db:5432/gem_db?sslmode=disable", PostgresURL(c))
}
