package memory

import "fmt"

func errBookingNotFound(id string) error {
	return fmt.Errorf("booking not found: %s", id)
}
