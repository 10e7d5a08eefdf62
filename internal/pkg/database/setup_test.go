package database

import (
	"testing"

	"github.com/ManuelReschke/StudyFox/internal/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
)

func TestDialectorMySQL(t *testing.T) {
	d, err := Dialector(config.Database{User: "fox", Password: "pw", Host: "db", Name: "studyfox"})
	require.NoError(t, err)

	my, ok := d.(*mysql.Dialector)
	require.True(t, ok)
	assert.Equal(t, "fox:pw@tcp(db:3306)/studyfox?charset=utf8mb4&parseTime=True&loc=UTC", my.DSN)
}

func TestDialectorPostgres(t *testing.T) {
	d, err := Dialector(config.Database{Driver: "postgres", User: "fox", Password: "pw", Host: "db", Name: "studyfox", Port: "6432"})
	require.NoError(t, err)

	pg, ok := d.(*postgres.Dialector)
	require.True(t, ok)
	assert.Equal(t, "host=db user=fox password=pw dbname=studyfox port=6432 sslmode=disable TimeZone=UTC", pg.DSN)
}

func TestDialectorUnknown(t *testing.T) {
	_, err := Dialector(config.Database{Driver: "oracle"})
	assert.Error(t, err)
}
