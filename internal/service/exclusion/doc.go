// Package exclusion implements the exclusion-list lookup the scheduler
// consults before dialing a contact (spec §4.1 step 3, §12).
package exclusion
