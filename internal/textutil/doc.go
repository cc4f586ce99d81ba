// Package textutil provides text normalization for filenames and
// metadata voting.
//
// SanitizeFileName makes a tag value safe as a path segment on the
// strictest target filesystem. NormalizeVote folds case, width, and
// whitespace so that cosmetically different tag values count as the
// same ballot.
package textutil
