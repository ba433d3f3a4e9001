package database

import (
	"strings"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver" // Registers the value and ? marker expressions
)

// StatementKind tells the executor how to run a statement
type StatementKind int

const (
	// StatementExec is any statement that reports affected rows
	StatementExec StatementKind = iota
	// StatementRows produces a result set
	StatementRows
	StatementBegin
	StatementCommit
	StatementRollback
)

func (k StatementKind) String() string {
	switch k {
	case StatementRows:
		return "rows"
	case StatementBegin:
		return "begin"
	case StatementCommit:
		return "commit"
	case StatementRollback:
		return "rollback"
	}
	return "exec"
}

// IsTransactionControl reports whether the statement starts or ends a transaction
func (k StatementKind) IsTransactionControl() bool {
	return k == StatementBegin || k == StatementCommit || k == StatementRollback
}

// StatementClassifier decides the kind of a statement with the TiDB parser.
// The parser is not safe for concurrent use; the Connection serialises calls.
type StatementClassifier struct {
	parser *parser.Parser
}

// NewStatementClassifier creates a new StatementClassifier
func NewStatementClassifier() *StatementClassifier {
	return &StatementClassifier{parser: parser.New()}
}

// Classify returns the kind of a single statement. Statements the parser
// rejects fall back to their leading keyword.
func (c *StatementClassifier) Classify(statement string) StatementKind {
	stmtNodes, _, err := c.parser.Parse(statement, "", "")
	if err != nil || len(stmtNodes) != 1 {
		return classifyKeyword(statement)
	}

	switch stmtNodes[0].(type) {
	case *ast.SelectStmt, *ast.SetOprStmt, *ast.ShowStmt, *ast.ExplainStmt:
		return StatementRows
	case *ast.BeginStmt:
		return StatementBegin
	case *ast.CommitStmt:
		return StatementCommit
	case *ast.RollbackStmt:
		return StatementRollback
	}
	return StatementExec
}

func classifyKeyword(statement string) StatementKind {
	fields := strings.Fields(strings.TrimLeft(statement, "( \t\r\n"))
	if len(fields) == 0 {
		return StatementExec
	}

	switch strings.ToUpper(strings.TrimSuffix(fields[0], ";")) {
	case "SELECT", "SHOW", "DESCRIBE", "DESC", "EXPLAIN", "WITH", "VALUES", "TABLE":
		return StatementRows
	case "BEGIN":
		return StatementBegin
	case "START":
		if len(fields) > 1 && strings.EqualFold(strings.TrimSuffix(fields[1], ";"), "TRANSACTION") {
			return StatementBegin
		}
	case "COMMIT":
		return StatementCommit
	case "ROLLBACK":
		return StatementRollback
	}
	return StatementExec
}
