// Package id provides unique identifier generation for tasks.
package id

import "github.com/google/uuid"

// Generate creates a new unique task ID.
// Format: task-<uuid>
// Example: task-3f0c1a52-6f5e-4b59-9a7b-0d1c2e3f4a5b
func Generate() string {
	return "task-" + uuid.NewString()
}
