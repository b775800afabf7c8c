package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridoystarlord/casemigrate/format"
	"github.com/ridoystarlord/casemigrate/logging"
	"github.com/ridoystarlord/casemigrate/memstore"
	"github.com/ridoystarlord/casemigrate/schema"
	"github.com/ridoystarlord/casemigrate/source"
	"github.com/ridoystarlord/casemigrate/xmlparser"
)

var activeMapping = schema.EntityMapping{StatusToActive: true}

func newEngine(legacy, store *memstore.Store) *Engine {
	e := NewEngine(legacy, store, logging.Nop())
	e.BatchSize = 2
	e.Now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return e
}

func chainStore() *memstore.Store {
	return memstore.New().
		CreateTable("dm_process", "id", "process_type").
		CreateTable("dm_import_application", "id", "reference", "status").
		CreateTable("web_process", "id", "process_type").
		CreateTable("web_import_application", "id", "reference", "is_active")
}

func TestExtractFansOutWithSharedKeys(t *testing.T) {
	legacy := memstore.New().Script("ia",
		source.RowOf("process_type", "ImportApplication", "reference", "IMA/1", "status", "ACTIVE"),
		source.RowOf("process_type", "ImportApplication", "reference", "IMA/2", "status", "ACTIVE"),
		source.RowOf("process_type", "ImportApplication", "reference", "IMA/3", "status", "CLOSED"),
	)
	store := chainStore()
	store.Seed("web_process", map[string]any{"id": int64(10), "process_type": "Legacy"})

	e := newEngine(legacy, store)
	e.Keys[ProcessKeySpace] = NewKeyAllocator(store, "id", "dm_process", "web_process")

	n, err := e.Extract(context.Background(), QueryDescriptor{
		Name:     "ia",
		SQL:      "SELECT 1",
		Staging:  []string{"dm_process", "dm_import_application"},
		KeySpace: ProcessKeySpace,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	assert.Equal(t, []int64{11, 12, 13}, store.Keys("dm_process"))
	assert.Equal(t, []int64{11, 12, 13}, store.Keys("dm_import_application"))
	assert.Equal(t, "IMA/2", store.Rows("dm_import_application")[1]["reference"])
	assert.Nil(t, store.Rows("dm_process")[0]["reference"])

	for _, st := range []SourceTarget{
		{Source: "dm_process", Target: "web_process"},
		{Source: "dm_import_application", Target: "web_import_application", Mapping: activeMapping},
	} {
		_, err := e.Load(context.Background(), st)
		require.NoError(t, err)
	}

	assert.Equal(t, []int64{10, 11, 12, 13}, store.Keys("web_process"))
	assert.Equal(t, []int64{11, 12, 13}, store.Keys("web_import_application"))
	assert.Equal(t, false, store.Rows("web_import_application")[2]["is_active"])

	// Later extraction in the same run continues the key space.
	next, err := e.Keys[ProcessKeySpace].NextChainKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(14), next)
}

func TestExtractRequiresKeyStrategyForChains(t *testing.T) {
	e := newEngine(memstore.New(), chainStore())

	_, err := e.Extract(context.Background(), QueryDescriptor{
		Name:    "ia",
		Staging: []string{"dm_process", "dm_import_application"},
	})
	assert.ErrorIs(t, err, ErrConfig)

	_, err = e.Extract(context.Background(), QueryDescriptor{
		Name:     "ia",
		Staging:  []string{"dm_process"},
		KeySpace: "missing",
	})
	assert.ErrorIs(t, err, ErrConfig)
}

func TestExtractAppliesParameterOverrides(t *testing.T) {
	legacy := memstore.New().ScriptFunc("files", func(q source.Query) []source.Row {
		return []source.Row{source.RowOf("kind", q.Args["app_type"])}
	})
	store := memstore.New().CreateTable("dm_file", "id", "kind")

	e := newEngine(legacy, store)
	e.Overrides["files"] = map[string]any{"app_type": "SIL"}

	_, err := e.Extract(context.Background(), QueryDescriptor{
		Name:       "files",
		Staging:    []string{"dm_file"},
		Parameters: map[string]any{"app_type": "DFL"},
	})
	require.NoError(t, err)
	assert.Equal(t, "SIL", store.Rows("dm_file")[0]["kind"])
}

func TestLoadResetsSequenceAfterExplicitKeys(t *testing.T) {
	for _, k := range []int{1, 2, 7} {
		store := memstore.New().
			CreateTable("dm_country", "id", "name").
			CreateTable("web_country", "id", "name")
		for i := 1; i <= k; i++ {
			store.Seed("dm_country", map[string]any{"id": int64(i), "name": "c"})
		}

		e := newEngine(memstore.New(), store)
		n, err := e.Load(context.Background(), SourceTarget{Source: "dm_country", Target: "web_country"})
		require.NoError(t, err)
		assert.Equal(t, int64(k), n)
		assert.Positive(t, store.Resets["web_country"])

		_, err = store.InsertBatch(context.Background(), "web_country", []string{"name"}, [][]any{{"new"}})
		require.NoError(t, err, "k=%d", k)
		keys := store.Keys("web_country")
		assert.Greater(t, keys[len(keys)-1], int64(k))
	}
}

func TestLoadFailureIsFatal(t *testing.T) {
	store := memstore.New().
		CreateTable("dm_country", "id", "name").
		CreateTable("web_country", "id", "name")
	store.Seed("dm_country", map[string]any{"id": int64(1), "name": "c"})
	store.FailInsert["web_country"] = errors.New("connection reset")

	_, err := newEngine(memstore.New(), store).Load(context.Background(), SourceTarget{Source: "dm_country", Target: "web_country"})
	assert.ErrorContains(t, err, "connection reset")
	assert.Zero(t, store.Resets["web_country"])
}

func TestInsertRecordsKeepsOrderAcrossKeySets(t *testing.T) {
	store := memstore.New().CreateTable("dm_office", "id", "postcode", "address")

	n, err := newEngine(memstore.New(), store).insertRecords(context.Background(), "dm_office", "id", []format.Record{
		{"id": int64(1), "postcode": "AB1"},
		{"id": int64(2), "address": "1 Street"},
		{"id": int64(3), "postcode": "AB3"},
		{"id": int64(4), "postcode": "AB4"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.Equal(t, []int64{1, 2, 3, 4}, store.Keys("dm_office"))
	assert.Equal(t, "1 Street", store.Rows("dm_office")[1]["address"])
}

func TestLoadSkipsRowsAlreadyLoaded(t *testing.T) {
	store := memstore.New().
		CreateTable("dm_process", "id", "process_type").
		CreateTable("web_process", "id", "process_type")
	store.Seed("dm_process",
		map[string]any{"id": int64(1), "process_type": "AccessRequest"},
		map[string]any{"id": int64(2), "process_type": "ImportApplication"},
	)
	store.Seed("web_process", map[string]any{"id": int64(1), "process_type": "AccessRequest"})

	n, err := newEngine(memstore.New(), store).Load(context.Background(), SourceTarget{
		Source: "dm_process", Target: "web_process", SkipLoaded: true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, []int64{1, 2}, store.Keys("web_process"))
}

func TestRelate(t *testing.T) {
	store := memstore.New().
		CreateTable("dm_importer_office", "", "importer_id", "office_id").
		CreateTable("web_importer_offices", "id", "importer_id", "office_id")
	store.Seed("dm_importer_office",
		map[string]any{"importer_id": int64(1), "office_id": int64(4)},
		map[string]any{"importer_id": int64(1), "office_id": int64(5)},
		map[string]any{"importer_id": int64(2), "office_id": nil},
	)

	rel := Relationship{
		Source:        "dm_importer_office",
		Target:        "web_importer",
		Related:       "web_office",
		Field:         "offices",
		SourceOwner:   "importer_id",
		SourceRelated: "office_id",
	}
	n, err := newEngine(memstore.New(), store).Relate(context.Background(), rel)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	rows := store.Rows("web_importer_offices")
	assert.Equal(t, int64(5), rows[1]["office_id"])
	assert.Equal(t, []int64{1, 2}, store.Keys("web_importer_offices"))

	rel.Field = "missing"
	_, err = newEngine(memstore.New(), store).Relate(context.Background(), rel)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestThroughColumnsForSelfRelations(t *testing.T) {
	owner, related := Relationship{Target: "web_country", Related: "web_country"}.ThroughColumns()
	assert.Equal(t, "from_country_id", owner)
	assert.Equal(t, "to_country_id", related)
}

func TestBackfillBucketsStatuses(t *testing.T) {
	store := memstore.New().
		CreateTable("web_import_application", "id", "status").
		CreateTable("web_document_pack", "id", "import_application_id", "status", "issue_paper_licence_only")
	store.Seed("web_import_application",
		map[string]any{"id": int64(1), "status": "PROCESSING"},
		map[string]any{"id": int64(2), "status": "revoked"},
		map[string]any{"id": int64(3), "status": "WITHDRAWN"},
		map[string]any{"id": int64(4), "status": "IN_PROGRESS"},
		map[string]any{"id": int64(5), "status": "PROCESSING"},
	)
	store.Seed("web_document_pack", map[string]any{"id": int64(1), "import_application_id": int64(5), "status": "draft"})
	require.NoError(t, store.ResetSequence(context.Background(), "web_document_pack", "id"))

	n, err := newEngine(memstore.New(), store).Backfill(context.Background(), BackfillDescriptor{
		Name:           "import licences",
		Entity:         "web_import_application",
		Companion:      "web_document_pack",
		CompanionOwner: "import_application_id",
		Buckets:        DocumentPackBuckets,
		Defaults:       map[string]any{"issue_paper_licence_only": false},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	got := map[int64]string{}
	for _, r := range store.Rows("web_document_pack")[1:] {
		got[r["import_application_id"].(int64)] = r["status"].(string)
		assert.Equal(t, false, r["issue_paper_licence_only"])
	}
	assert.Equal(t, map[int64]string{1: "draft", 2: "revoked", 3: "archived"}, got)
}

func TestDeriveTasks(t *testing.T) {
	store := memstore.New().
		CreateTable("web_import_application", "id", "status", "action_code").
		CreateTable("web_task", "id", "process_id", "task_type", "is_active", "created")
	store.Seed("web_import_application",
		map[string]any{"id": int64(1), "status": "SUBMITTED", "action_code": "AUTHORISE"},
		map[string]any{"id": int64(2), "status": "SUBMITTED", "action_code": "AUTHORISE"},
		map[string]any{"id": int64(3), "status": "IN_PROGRESS", "action_code": nil},
		map[string]any{"id": int64(4), "status": "COMPLETED", "action_code": "OTHER"},
	)
	store.Seed("web_task", map[string]any{"id": int64(1), "process_id": int64(2), "task_type": "authorise"})
	require.NoError(t, store.ResetSequence(context.Background(), "web_task", "id"))

	desc := TaskDescriptor{
		Name:   "import tasks",
		Entity: "web_import_application",
		Table:  "web_task",
		Rules: []TaskRule{
			ActionCodeRule{Type: "authorise", Column: "action_code", Codes: []string{"AUTHORISE"}},
			StatusRule{Type: "prepare", Column: "status", Statuses: []string{"in_progress"}},
		},
	}
	n, err := newEngine(memstore.New(), store).DeriveTasks(context.Background(), desc)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	rows := store.Rows("web_task")
	require.Len(t, rows, 3)
	assert.Equal(t, int64(1), rows[1]["process_id"])
	assert.Equal(t, "authorise", rows[1]["task_type"])
	assert.Equal(t, int64(3), rows[2]["process_id"])
	assert.Equal(t, "prepare", rows[2]["task_type"])
	assert.Equal(t, true, rows[2]["is_active"])

	desc.Rules = append(desc.Rules, StatusRule{Type: "authorise", Column: "status", Statuses: []string{"SUBMITTED"}})
	_, err = newEngine(memstore.New(), store).DeriveTasks(context.Background(), desc)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestRunParserIsolatesMalformedDocuments(t *testing.T) {
	store := memstore.New().
		CreateTable("dm_user", "id", "telephone_xml").
		CreateTable("dm_phone_number", "id", "user_id", "phone", "type", "comment")
	phone := func(n string) string {
		return "<TELEPHONE_NO_LIST><TELEPHONE_NO><TELEPHONE_HASH_CODE>" + n + "</TELEPHONE_HASH_CODE><TYPE>W</TYPE></TELEPHONE_NO></TELEPHONE_NO_LIST>"
	}
	store.Seed("dm_user",
		map[string]any{"id": int64(1), "telephone_xml": phone("111")},
		map[string]any{"id": int64(2), "telephone_xml": "<TELEPHONE_NO_LIST><TELEPHONE_NO>"},
		map[string]any{"id": int64(3), "telephone_xml": phone("333")},
		map[string]any{"id": int64(4), "telephone_xml": nil},
	)

	n, err := newEngine(memstore.New(), store).RunParser(context.Background(), xmlparser.PhoneNumber())
	assert.ErrorIs(t, err, xmlparser.ErrMalformedDocument)
	assert.ErrorContains(t, err, "key 2")
	assert.Equal(t, int64(2), n)

	rows := store.Rows("dm_phone_number")
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0]["user_id"])
	assert.Equal(t, int64(3), rows[1]["user_id"])
}

func TestRunParserAllocatesFromProcessKeySpace(t *testing.T) {
	store := memstore.New().
		CreateTable("dm_process", "id", "process_type", "is_active", "created").
		CreateTable("dm_access_request", "id", "fir_xml").
		CreateTable("dm_further_information_request", "id", "access_request_id", "status", "request_subject", "requested_datetime")
	store.Seed("dm_process", map[string]any{"id": int64(20), "process_type": "AccessRequest"})
	store.Seed("dm_access_request", map[string]any{"id": int64(20), "fir_xml": `<RFI_LIST>
  <RFI><STATUS>OPEN</STATUS><REQUEST><REQUESTED_DATETIME>2022-03-02T10:00:00</REQUESTED_DATETIME><SUBJECT>b</SUBJECT></REQUEST></RFI>
  <RFI><STATUS>CLOSED</STATUS><REQUEST><REQUESTED_DATETIME>2022-01-02T10:00:00</REQUESTED_DATETIME><SUBJECT>a</SUBJECT></REQUEST></RFI>
</RFI_LIST>`})

	e := newEngine(memstore.New(), store)
	e.Keys[ProcessKeySpace] = NewKeyAllocator(store, "id", "dm_process", "web_process")

	_, err := e.RunParser(context.Background(), xmlparser.FIR("access_fir", "dm_access_request", "access_request_id"))
	require.NoError(t, err)

	assert.Equal(t, []int64{20, 21, 22}, store.Keys("dm_process"))
	assert.Equal(t, []int64{21, 22}, store.Keys("dm_further_information_request"))
	assert.Equal(t, "a", store.Rows("dm_further_information_request")[0]["request_subject"])
	assert.Positive(t, store.Resets["dm_process"])
}
