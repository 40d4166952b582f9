package leads

import (
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseIdentifier(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{`"BJH-Server".bjh_all_leads`, `"BJH-Server"."bjh_all_leads"`, false},
		{`leads`, `"leads"`, false},
		{`"a.b".c`, `"a.b"."c"`, false},
		{`a.b.c`, "", true},
		{`"unterminated`, "", true},
		{`.leads`, "", true},
		{``, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseIdentifier(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Sanitize() != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got.Sanitize())
			}
		})
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, DefaultLimit},
		{-5, DefaultLimit},
		{25, 25},
		{5000, MaxLimit},
	}
	for _, tt := range tests {
		if got := ClampLimit(tt.in); got != tt.want {
			t.Errorf("ClampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	if got := normalize([]byte("abc")); got != "abc" {
		t.Errorf("expected bytes to become a string, got %#v", got)
	}
	if got := normalize(int64(3)); got != int64(3) {
		t.Errorf("expected passthrough, got %#v", got)
	}
}

func TestListAgainstDatabase(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	repo, err := Connect(ctx, dsn, "callboard_test_leads", zerolog.Nop())
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer repo.Close()

	if _, err := repo.conn.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS callboard_test_leads (id int, name text)`); err != nil {
		t.Skipf("cannot create table: %v", err)
	}
	defer repo.conn.ExecContext(ctx, `DROP TABLE callboard_test_leads`)
	if _, err := repo.conn.ExecContext(ctx, `DELETE FROM callboard_test_leads`); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if _, err := repo.conn.ExecContext(ctx, `INSERT INTO callboard_test_leads VALUES (1, 'a'), (2, 'b'), (3, 'c')`); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	rows, err := repo.List(ctx, 2)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("expected 2 rows, got %d", len(rows))
	}
	if _, ok := rows[0]["name"].(string); !ok {
		t.Errorf("expected name to be a string, got %#v", rows[0]["name"])
	}
}
