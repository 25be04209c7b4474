package repositories

import (
	"errors"

	"github.com/Masterminds/squirrel"
)

// SqBuilder is the shared statement builder, postgres placeholders.
var SqBuilder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var ErrBadQuery = errors.New("bad query")
