// Package vault walks an Obsidian vault and extracts embedded attachment
// references from each note.
//
// Scan returns a lazy iterator; every call re-walks the filesystem. Files
// that cannot be read are reported as *ScanError values in the sequence and
// iteration continues.
package vault
