package repository

import (
	"fmt"
	"strings"

	"github.com/noah-isme/course-ledger-api/internal/models"
)

// clauseBuilder accumulates WHERE conditions with positional $n arguments.
// Expressions use a single %d verb (or %[1]d when the argument repeats).
type clauseBuilder struct {
	conditions []string
	args       []interface{}
}

func (b *clauseBuilder) add(expr string, arg interface{}) {
	b.args = append(b.args, arg)
	b.conditions = append(b.conditions, fmt.Sprintf(expr, len(b.args)))
}

func (b *clauseBuilder) where() string {
	if len(b.conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conditions, " AND ")
}

func pageWindow(page, size int) (limit, offset int) {
	page, size = models.NormalizePage(page, size)
	return size, (page - 1) * size
}

func likePattern(search string) string {
	return "%" + strings.TrimSpace(search) + "%"
}
