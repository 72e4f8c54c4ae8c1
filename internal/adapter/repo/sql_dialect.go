package repo

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// Dialect captures the few places where MySQL and Postgres differ for this schema.
type Dialect struct {
	Name string
}

var (
	MySQL    = Dialect{Name: "mysql"}
	Postgres = Dialect{Name: "postgres"}
)

func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case MySQL.Name:
		return MySQL, nil
	case Postgres.Name:
		return Postgres, nil
	}
	return Dialect{}, errors.New("unsupported sql driver: " + driver)
}

// Rebind rewrites ? placeholders into $n for Postgres. Queries must not contain
// literal question marks.
func (d Dialect) Rebind(q string) string {
	if d.Name != Postgres.Name {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

// IsUniqueViolation reports a duplicate key on insert.
func (d Dialect) IsUniqueViolation(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	var pe *pq.Error
	if errors.As(err, &pe) {
		return pe.Code == "23505"
	}
	return false
}
