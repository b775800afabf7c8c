package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ridoystarlord/casemigrate/generator"
	"github.com/ridoystarlord/casemigrate/schema"
	"github.com/ridoystarlord/casemigrate/source"
	"github.com/ridoystarlord/casemigrate/xmlparser"
)

// ErrConfig marks descriptor configuration errors. They are fatal before any
// data moves.
var ErrConfig = errors.New("configuration error")

// QueryDescriptor is one extraction query and the staging tables it fills.
type QueryDescriptor struct {
	Name string
	SQL  string
	// Staging lists the staging tables each legacy row is written to, base
	// table first. More than one table makes an inheritance chain whose
	// levels share one key per legacy row.
	Staging []string
	// KeySpace names the allocator supplying chain keys.
	KeySpace   string
	Parameters map[string]any
	// LimitBy is the column whose last value resumes the query.
	LimitBy string
}

// Query binds the descriptor's parameters, with overrides applied on top.
func (q QueryDescriptor) Query(overrides map[string]any) source.Query {
	return source.Query{Name: q.Name, SQL: q.SQL, Args: q.Parameters}.WithArgs(overrides)
}

// SourceTarget moves one staging table into one target table.
type SourceTarget struct {
	Source  string
	Target  string
	PK      string
	OrderBy string
	Mapping schema.EntityMapping
	// SkipLoaded skips staging rows whose key is already in the target. Set
	// it for staging tables more than one domain writes to.
	SkipLoaded bool
}

func (st SourceTarget) Name() string {
	return st.Source + " -> " + st.Target
}

func (st SourceTarget) pk() string {
	if st.PK == "" {
		return "id"
	}
	return st.PK
}

// Relationship fills the through table of a many-to-many field from a
// join-shape staging table.
type Relationship struct {
	// Source is the join-shape staging table.
	Source string
	// Target owns the relation field; Related is the other side.
	Target  string
	Related string
	Field   string
	// SourceOwner and SourceRelated are the join-shape columns holding the
	// owner and related keys. Either may name a lookup alias.
	SourceOwner   string
	SourceRelated string
	// Lookups resolve legacy identifiers in Source to staging keys.
	Lookups []schema.Lookup
}

func (r Relationship) Name() string {
	return r.Target + "." + r.Field
}

// Through is the join table, named after the owner table and field.
func (r Relationship) Through() string {
	return generator.ThroughTable(r.Target, r.Field)
}

// ThroughColumns returns the owner and related key columns of the through
// table. Relations between rows of the same table use from_/to_ prefixes.
func (r Relationship) ThroughColumns() (owner, related string) {
	owner, related = generator.JoinColumn(r.Target), generator.JoinColumn(r.Related)
	if owner == related {
		return "from_" + owner, "to_" + related
	}
	return owner, related
}

// BackfillDescriptor creates missing companion records for entities whose
// status implies one.
type BackfillDescriptor struct {
	Name   string
	Entity string
	// EntityKey and StatusColumn default to id and status.
	EntityKey    string
	StatusColumn string
	Companion    string
	// CompanionOwner is the companion column referencing the entity.
	CompanionOwner  string
	CompanionStatus string
	// Buckets maps lower-cased entity statuses to companion statuses.
	// Entities with any other status get no companion.
	Buckets  map[string]string
	Defaults map[string]any
}

// DocumentPackBuckets sorts application statuses into the three document
// pack states.
var DocumentPackBuckets = map[string]string{
	"processing":          "draft",
	"submitted":           "draft",
	"variation_requested": "draft",
	"revoked":             "revoked",
	"withdrawn":           "archived",
	"completed":           "archived",
	"stopped":             "archived",
	"refused":             "archived",
}

// TaskRule decides whether an entity row needs a task of one type.
type TaskRule interface {
	TaskType() string
	matches(row source.Row) bool
}

// ActionCodeRule matches rows whose workbasket action code is listed.
type ActionCodeRule struct {
	Type   string
	Column string
	Codes  []string
}

func (r ActionCodeRule) TaskType() string { return r.Type }

func (r ActionCodeRule) matches(row source.Row) bool {
	return containsFold(r.Codes, row.String(r.Column))
}

// StatusRule matches rows by final entity status.
type StatusRule struct {
	Type     string
	Column   string
	Statuses []string
}

func (r StatusRule) TaskType() string { return r.Type }

func (r StatusRule) matches(row source.Row) bool {
	return containsFold(r.Statuses, row.String(r.Column))
}

func containsFold(list []string, v string) bool {
	if v == "" {
		return false
	}
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// TaskDescriptor derives task records from an entity table. Each task type
// has exactly one rule.
type TaskDescriptor struct {
	Name string
	// Entity is read for candidate rows; its key becomes process_id.
	Entity    string
	EntityKey string
	Table     string
	Rules     []TaskRule
}

// Validate rejects descriptors giving one task type more than one rule.
func (t TaskDescriptor) Validate() error {
	seen := map[string]bool{}
	for _, rule := range t.Rules {
		if seen[rule.TaskType()] {
			return fmt.Errorf("%w: task %s has more than one rule for %s", ErrConfig, t.Name, rule.TaskType())
		}
		seen[rule.TaskType()] = true
	}
	return nil
}

// Plan is everything migrated for one domain, in run order.
type Plan struct {
	Queries   []QueryDescriptor
	Parsers   []xmlparser.Parser
	Loads     []SourceTarget
	Relations []Relationship
	Backfills []BackfillDescriptor
	Tasks     []TaskDescriptor
}

// Plans holds the plan of each domain.
type Plans map[Domain]Plan

// Validate checks descriptors that can be judged without a database.
func (p Plans) Validate(keySpaces map[string]bool) error {
	var errs []error
	for _, d := range Domains {
		plan := p[d]
		for _, q := range plan.Queries {
			if len(q.Staging) == 0 {
				errs = append(errs, fmt.Errorf("%w: query %s has no staging table", ErrConfig, q.Name))
			}
			if len(q.Staging) > 1 && q.KeySpace == "" {
				errs = append(errs, fmt.Errorf("%w: query %s fills %d chain levels without a key strategy", ErrConfig, q.Name, len(q.Staging)))
			}
			if q.KeySpace != "" && !keySpaces[q.KeySpace] {
				errs = append(errs, fmt.Errorf("%w: query %s uses unknown key space %q", ErrConfig, q.Name, q.KeySpace))
			}
		}
		for _, r := range plan.Relations {
			if r.Field == "" || r.SourceOwner == "" || r.SourceRelated == "" {
				errs = append(errs, fmt.Errorf("%w: relationship %s is incomplete", ErrConfig, r.Name()))
			}
		}
		for _, t := range plan.Tasks {
			errs = append(errs, t.Validate())
		}
	}
	return errors.Join(errs...)
}
