// Package domain holds the typed records of the coloring catalog.
package domain
