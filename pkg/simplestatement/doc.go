// Package simplestatement provides a reusable library for storing bank
// statement documents and handing out short-lived, revocable download links
// with pluggable repository and object storage backends.
//
// It exposes a single Service interface that orchestrates upload with
// content-hash deduplication, owner-scoped retrieval, presigned link issuance
// and revocation. Implementations of repositories (memory, Postgres) and
// object stores (memory, filesystem, S3) are provided under subpackages.
//
// Deduplication
//
// A statement is identified by its natural key: customer, account, statement
// period and the SHA-256 of the uploaded bytes. Uploading identical bytes for
// the same key returns the existing statement. Two concurrent uploads of the
// same key converge on a single row; the loser's object is left behind in the
// store and is found later by the reconcile package.
//
// Auditing
//
// The Service does not record audit events itself. Callers build them with
// NewAuditEvent from the statement the Service returns and pass them to an
// AuditSink (see the audit subpackage).
package simplestatement
