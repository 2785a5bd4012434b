// Package lists registers all access-control list definitions with the
// list registry. Import this package for its side effects to make the
// full set of lists available.
package lists

// This file exists to provide a single import point.
// Each list file uses init() to register its lists.
