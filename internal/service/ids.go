package service

import "github.com/google/uuid"

// validID reports whether id can address a row; malformed ids are treated as not found.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
