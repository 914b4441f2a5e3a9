// Package legacy reads the exports of the previous rating system into a
// domain.LegacyBatch.
package legacy

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-tally/internal/domain"
)

// Default file names inside a legacy export directory.
const (
	UsersFile    = "user.json"
	VotesFile    = "votes.json"
	ProblemsFile = "problem.txt"
)

// Sources names the three legacy inputs. An empty path skips that input.
type Sources struct {
	Users    string
	Votes    string
	Problems string
}

// DirSources returns the conventional file layout under dir.
func DirSources(dir string) Sources {
	return Sources{
		Users:    filepath.Join(dir, UsersFile),
		Votes:    filepath.Join(dir, VotesFile),
		Problems: filepath.Join(dir, ProblemsFile),
	}
}

// ParseError locates a failure in one legacy source.
type ParseError struct {
	Source string
	Line   int
	Err    error
}

// Error implements the error interface for ParseError.
func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse %s:%d: %v", e.Source, e.Line, e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.Source, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error { return e.Err }

// Load parses the three sources concurrently. The first failure cancels
// the others and is returned.
func Load(ctx context.Context, src Sources) (domain.LegacyBatch, error) {
	var batch domain.LegacyBatch
	g, ctx := errgroup.WithContext(ctx)

	if src.Users != "" {
		g.Go(func() error {
			users, err := parseFile(ctx, src.Users, ParseUsers)
			batch.Users = users
			return err
		})
	}
	if src.Votes != "" {
		g.Go(func() error {
			votes, err := parseFile(ctx, src.Votes, ParseVotes)
			batch.Votes = votes
			return err
		})
	}
	if src.Problems != "" {
		g.Go(func() error {
			urls, err := parseFile(ctx, src.Problems, ParseProblemURLs)
			batch.URLs = urls
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return domain.LegacyBatch{}, err
	}
	return batch, nil
}

func parseFile[T any](ctx context.Context, path string, parse func(io.Reader, string) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return zero, fmt.Errorf("open legacy source: %w", err)
	}
	defer f.Close()
	return parse(f, filepath.Base(path))
}

// ParseUsers reads the user export. Both a JSON array of users and an
// object keyed by username are accepted; in the keyed form the key fills
// a missing username.
func ParseUsers(r io.Reader, name string) ([]domain.LegacyUser, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ParseError{Source: name, Err: err}
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	if data[0] == '[' {
		var users []domain.LegacyUser
		if err := json.Unmarshal(data, &users); err != nil {
			return nil, &ParseError{Source: name, Err: err}
		}
		return users, nil
	}

	var keyed map[string]domain.LegacyUser
	if err := json.Unmarshal(data, &keyed); err != nil {
		return nil, &ParseError{Source: name, Err: err}
	}
	users := make([]domain.LegacyUser, 0, len(keyed))
	for key, u := range keyed {
		if u.Username == "" {
			u.Username = key
		}
		users = append(users, u)
	}
	return users, nil
}

// ParseVotes reads the vote export, a JSON array of votes.
func ParseVotes(r io.Reader, name string) ([]domain.LegacyVote, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ParseError{Source: name, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var votes []domain.LegacyVote
	if err := json.Unmarshal(data, &votes); err != nil {
		return nil, &ParseError{Source: name, Err: err}
	}
	return votes, nil
}

// ParseProblemURLs reads "title<TAB>url" lines. Lines without a tab are
// split at the last space when the tail looks like a URL; otherwise the
// whole line is a title with no URL. Blank lines and lines starting with
// '#' are ignored.
func ParseProblemURLs(r io.Reader, name string) (map[string]string, error) {
	urls := make(map[string]string)
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Text()
		text := strings.TrimSpace(raw)
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		title, url := splitProblemLine(strings.TrimRight(raw, "\r\n "))
		if title == "" {
			return nil, &ParseError{Source: name, Line: line, Err: fmt.Errorf("missing title")}
		}
		urls[title] = url
	}
	if err := sc.Err(); err != nil {
		return nil, &ParseError{Source: name, Line: line, Err: err}
	}
	return urls, nil
}

func splitProblemLine(text string) (title, url string) {
	if before, after, ok := strings.Cut(text, "\t"); ok {
		return strings.TrimSpace(before), strings.TrimSpace(after)
	}
	text = strings.TrimSpace(text)
	if i := strings.LastIndexByte(text, ' '); i > 0 {
		tail := text[i+1:]
		if strings.HasPrefix(tail, "http://") || strings.HasPrefix(tail, "https://") {
			return strings.TrimSpace(text[:i]), tail
		}
	}
	return text, ""
}
