package sqlstore

import "testing"

func TestRebind(t *testing.T) {
	pg := &Store{dialect: Postgres}
	lite := &Store{dialect: SQLite}

	q := `SELECT 1 FROM t WHERE a = ? AND b = ?`
	if got := pg.rebind(q); got != `SELECT 1 FROM t WHERE a = $1 AND b = $2` {
		t.Errorf("postgres rebind = %q", got)
	}
	if got := lite.rebind(q); got != q {
		t.Errorf("sqlite rebind changed query: %q", got)
	}
}
