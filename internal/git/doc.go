// Package git queries the git CLI so doctor can warn when plaintext copies
// of tracked files are committed or not ignored.
//
// All checks shell out to git and treat any failure as "no". A missing git
// binary therefore reports IsRepo == false.
package git
