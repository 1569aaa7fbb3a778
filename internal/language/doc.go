// Package language normalizes the language hints passed to transcription
// processors. Both ISO 639 codes and English words are accepted; processors
// receive the two-letter form.
package language
