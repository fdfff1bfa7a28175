// Package testsupport builds throwaway configs, snapshot directories, and
// journals for tests across the repository.
package testsupport
