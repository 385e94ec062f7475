// Package migration applies the versioned SQL schema of the booking store.
//
// Migration files live under sql/<dialect>/ and follow the
// {version}_{description}.sql naming convention. Each file runs inside its own
// transaction and is recorded in schema_migrations with its SHA-256 checksum;
// a recorded file whose content later changes is reported as a conflict.
package migration
