package db

import (
	"testing"

	"github.com/shinyyama/retail-orders-backend/internal/config"
)

func TestBuildDSN(t *testing.T) {
	base := config.Config{DBUser: "app", DBPassword: "pw", DBName: "shop", DBPort: "3306"}
	tests := []struct {
		name     string
		host     string
		instance string
		want     string
	}{
		{"plain host", "db.local", "", "app:pw@tcp(db.local:3306)/shop?charset=utf8mb4&parseTime=True&loc=UTC"},
		{"tcp wrapped", "tcp(10.0.0.1:3307)", "", "app:pw@tcp(10.0.0.1:3307)/shop?charset=utf8mb4&parseTime=True&loc=UTC"},
		{"socket path", "/var/run/mysqld.sock", "", "app:pw@unix(/var/run/mysqld.sock)/shop?charset=utf8mb4&parseTime=True&loc=UTC"},
		{"cloud sql", "ignored", "proj:region:inst", "app:pw@unix(/cloudsql/proj:region:inst)/shop?charset=utf8mb4&parseTime=True&loc=UTC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			cfg.DBHost = tt.host
			cfg.InstanceConnectionName = tt.instance
			if got := BuildDSN(&cfg); got != tt.want {
				t.Fatalf("got=%s want=%s", got, tt.want)
			}
		})
	}
}
