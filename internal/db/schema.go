package db

import (
	"fmt"
	"regexp"
)

// SchemaSQL defines the load run bookkeeping table.
const SchemaSQL = `
    DEFINE TABLE IF NOT EXISTS load_run SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS source ON load_run TYPE string;
    DEFINE FIELD IF NOT EXISTS table ON load_run TYPE string;
    DEFINE FIELD IF NOT EXISTS status ON load_run TYPE string ASSERT $value IN ["running", "completed", "failed"];
    DEFINE FIELD IF NOT EXISTS workers ON load_run TYPE int;
    DEFINE FIELD IF NOT EXISTS success ON load_run TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS failure ON load_run TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS retry_succeeded ON load_run TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS retry_dropped ON load_run TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS malformed ON load_run TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS error ON load_run TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS started_at ON load_run TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS completed_at ON load_run TYPE option<datetime>;
    DEFINE INDEX IF NOT EXISTS load_run_started ON load_run FIELDS started_at;
`

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validIdent(s string) bool {
	return identPattern.MatchString(s)
}

// rowTableSQL defines the target table. Rows carry whatever field names the
// load was configured with, so the table is schemaless; only the bookkeeping
// attributes are typed. DEFINE statements can't take parameters, hence the
// identifier check in callers.
func rowTableSQL(table string) string {
	return fmt.Sprintf(`
    DEFINE TABLE IF NOT EXISTS %[1]s SCHEMALESS;
    DEFINE FIELD IF NOT EXISTS run ON %[1]s TYPE string;
    DEFINE FIELD IF NOT EXISTS line ON %[1]s TYPE int;
    DEFINE INDEX IF NOT EXISTS %[1]s_run ON %[1]s FIELDS run;
`, table)
}
