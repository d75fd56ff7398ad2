/*
Package backup implements export-backup/import-backup (§4.8): a single
self-contained JSON document bundling every address, binding, block
instance, and page, plus the custom-block plugin source files, so a fresh
install can be restored with no side-channel directories assumed.
*/
package backup
