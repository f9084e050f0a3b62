package migration

import (
	"fmt"
	"sync"

	"gorm.io/gorm"
)

type step struct {
	name string
	run  func(*Migration) error
}

var (
	steps    []step
	initOnce sync.Once
)

// Migration is passed to each migration step. DB is set by RunAll.
type Migration struct {
	DB   *gorm.DB
	logs []string
}

func (m *Migration) Log(v ...interface{}) {
	m.logs = append(m.logs, fmt.Sprint(v...))
}

func (m *Migration) Logs() []string {
	return append([]string(nil), m.logs...)
}

func register(name string, run func(*Migration) error) {
	steps = append(steps, step{name: name, run: run})
}

// Init registers the built-in steps once per process.
func Init() {
	initOnce.Do(func() {
		register("normalize_show_output_values", normalizeShowOutputValues)
	})
}

// Names lists registered steps in run order.
func Names() []string {
	out := make([]string, 0, len(steps))
	for _, s := range steps {
		out = append(out, s.name)
	}
	return out
}

// RunAll runs all registered migrations in order. Steps must be idempotent; schema is synced via db.SyncSchema.
func RunAll(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	ctx := &Migration{DB: db}
	for _, s := range steps {
		ctx.logs = nil
		if err := s.run(ctx); err != nil {
			return fmt.Errorf("migration %s failed: %w", s.name, err)
		}
	}
	return nil
}

// normalizeShowOutputValues rewrites numeric and mixed-case booleans of the
// showOutput preference to the canonical "true"/"false".
func normalizeShowOutputValues(m *Migration) error {
	for from, to := range map[string]string{
		"1": "true", "TRUE": "true", "True": "true",
		"0": "false", "FALSE": "false", "False": "false",
	} {
		res := m.DB.Table("local_prefs").
			Where("key = ? AND value = ?", "showOutput", from).
			Update("value", to)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			m.Log("showOutput ", from, " -> ", to)
		}
	}
	return nil
}
