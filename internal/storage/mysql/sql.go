package mysql

const insertFailureSQL = `
INSERT INTO fetch_failures
  (op, lang, page, query, http_status, reason, seen_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?)
`

// Newest first; served by idx_fetch_failures_seen.
const recentFailuresSQL = `
SELECT id, op, lang, page, query, http_status, reason, seen_at
FROM fetch_failures
ORDER BY seen_at DESC, id DESC
LIMIT ?
`

const pruneFailuresSQL = `DELETE FROM fetch_failures WHERE seen_at < ?`
