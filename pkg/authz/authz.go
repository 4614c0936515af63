// Package authz decides whether a user may perform an operation on a path.
//
// The model is deliberately small: per-user rules matched by path prefix,
// the most specific rule wins, a deny flag overrides everything, and no
// matching rule means no access. Exactly one rule governs each decision;
// capabilities are never combined across rules.
package authz

import (
	"context"
	"fmt"
	"strings"

	"github.com/davshare/davshare/pkg/store"
)

// Operation is a WebDAV capability checked against a permission rule.
type Operation int

const (
	// OpList covers PROPFIND directory listing.
	OpList Operation = iota
	// OpRead covers GET/HEAD file download.
	OpRead
	// OpWrite covers PUT file upload.
	OpWrite
	// OpDelete covers DELETE of files and directories.
	OpDelete
	// OpMkcol covers MKCOL directory creation.
	OpMkcol
)

func (op Operation) String() string {
	switch op {
	case OpList:
		return "LIST"
	case OpRead:
		return "READ"
	case OpWrite:
		return "WRITE"
	case OpDelete:
		return "DELETE"
	case OpMkcol:
		return "MKCOL"
	default:
		return "UNKNOWN"
	}
}

// Engine evaluates permission rules fetched from a RuleStore. It is
// stateless and safe for concurrent use; every decision is a pure function
// of the rule set at lookup time.
type Engine struct {
	rules store.RuleStore
}

// NewEngine returns an Engine reading rules from the given store.
func NewEngine(rules store.RuleStore) *Engine {
	return &Engine{rules: rules}
}

// HasPermission reports whether username may perform op on path.
//
// Selection: among the user's rules whose normalized path is a string
// prefix of the normalized request path (the root rule "/" always
// qualifies), the rule with the longest path wins. Ties on length resolve
// to the first such rule in store order. A deny rule suppresses every
// capability regardless of its flags; no matching rule means deny.
func (e *Engine) HasPermission(ctx context.Context, username, path string, op Operation) (bool, error) {
	rules, err := e.rules.RulesFor(ctx, username)
	if err != nil {
		return false, fmt.Errorf("failed to load rules for %s: %w", username, err)
	}

	rule := mostSpecificRule(rules, path)
	if rule == nil {
		return false, nil
	}
	if rule.Deny {
		return false, nil
	}

	switch op {
	case OpList:
		return rule.CanList, nil
	case OpRead:
		return rule.CanRead, nil
	case OpWrite:
		return rule.CanWrite, nil
	case OpDelete:
		return rule.CanDelete, nil
	case OpMkcol:
		return rule.CanMkcol, nil
	default:
		return false, nil
	}
}

// mostSpecificRule picks the matching rule with the longest path, keeping
// the first one found on equal length.
func mostSpecificRule(rules []store.PermissionRule, requestPath string) *store.PermissionRule {
	normalized := normalizePath(requestPath)

	var best *store.PermissionRule
	for i := range rules {
		rulePath := normalizePath(rules[i].Path)
		if rulePath != "/" && !strings.HasPrefix(normalized, rulePath) {
			continue
		}
		if best == nil || len(rules[i].Path) > len(best.Path) {
			best = &rules[i]
		}
	}
	return best
}

// normalizePath trims whitespace and trailing separators; the empty result
// collapses to "/".
func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	p = strings.TrimRight(p, "/")
	if p == "" {
		return "/"
	}
	return p
}
