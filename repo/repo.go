// Package repo provides the generic data-access layer between domain
// services and the key-value store: key encoding, get-or-create with
// default fields, filtered scans and page-bounded listing.
package repo

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mkorobov/tickertrack/storage"
)

// DefaultPageSize bounds one page of a paginated listing.
const DefaultPageSize = 50

// ErrNotFound mirrors the store sentinel for callers that only import repo.
var ErrNotFound = storage.ErrNotFound

// Initializer produces the creation-time value of a default field.
type Initializer func() any

// KeyCodec turns a typed id into the store's string hash key.
type KeyCodec[ID comparable] func(ID) storage.Key

// Int64Key encodes numeric ids, such as Telegram user ids.
func Int64Key(id int64) storage.Key {
	return storage.Key(strconv.FormatInt(id, 10))
}

// StringKey encodes string ids, such as tickers.
func StringKey(id string) storage.Key {
	return storage.Key(id)
}

// PageOutOfRangeError reports a requested page outside [1, LastPage].
// Its message is shown to users verbatim.
type PageOutOfRangeError struct {
	Page     int
	LastPage int
}

func (e *PageOutOfRangeError) Error() string {
	return fmt.Sprintf("You asked for page %d. Enter a value between 1 and %d", e.Page, e.LastPage)
}

// Code returns a stable identifier for log err_code derivation.
func (e *PageOutOfRangeError) Code() string { return "PAGE_OUT_OF_RANGE" }

// Page is one slice of a paginated scan. PrevPage and NextPage are 0
// for sides that do not exist.
type Page struct {
	Items      []storage.Record
	PrevPage   int
	NextPage   int
	TotalPages int
}

// Repo is a repository for one entity type. Exactly one instance per
// table is constructed at startup and handed to the owning service.
type Repo[ID comparable] struct {
	store    storage.Store
	table    string
	hashKey  string
	encode   KeyCodec[ID]
	defaults map[string]Initializer
}

// New builds a repository bound to a table, its hash-key field and the
// default-field initializers applied only at creation time.
func New[ID comparable](store storage.Store, table, hashKey string, encode KeyCodec[ID], defaults map[string]Initializer) *Repo[ID] {
	return &Repo[ID]{
		store:    store,
		table:    table,
		hashKey:  hashKey,
		encode:   encode,
		defaults: defaults,
	}
}

// Table returns the underlying table name.
func (r *Repo[ID]) Table() string { return r.table }

// EnsureTable idempotently creates the backing table.
func (r *Repo[ID]) EnsureTable(ctx context.Context) error {
	return r.store.EnsureTable(ctx, r.table)
}

// Get fetches the record by hash key; ErrNotFound when absent.
func (r *Repo[ID]) Get(ctx context.Context, id ID) (storage.Record, error) {
	return r.store.Get(ctx, r.table, r.encode(id))
}

// GetOrCreate returns the existing record or persists and re-fetches a
// fresh one built from the hash key plus the default-field initializers.
// Two racing callers at worst both upsert the same default record, so
// the second writer cannot clobber fields the first call never set.
func (r *Repo[ID]) GetOrCreate(ctx context.Context, id ID) (storage.Record, error) {
	rec, err := r.Get(ctx, id)
	if err == nil {
		return rec, nil
	}
	if err != storage.ErrNotFound {
		return nil, err
	}

	fresh := storage.Record{r.hashKey: id}
	for field, init := range r.defaults {
		fresh[field] = init()
	}
	if err := r.store.Put(ctx, r.table, r.encode(id), fresh); err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

// Put fully replaces the record stored under id.
func (r *Repo[ID]) Put(ctx context.Context, id ID, rec storage.Record) error {
	return r.store.Put(ctx, r.table, r.encode(id), rec)
}

// Filter runs a full-table scan with an optional server-side predicate
// and field projection. Order is store-defined.
func (r *Repo[ID]) Filter(ctx context.Context, filter *storage.Filter, projection ...string) ([]storage.Record, error) {
	return r.store.Scan(ctx, r.table, filter, projection)
}

// Update applies SET/REMOVE field operations to the record under id.
func (r *Repo[ID]) Update(ctx context.Context, id ID, ops ...storage.FieldOp) error {
	return r.store.Update(ctx, r.table, r.encode(id), ops)
}

// Paginate scans the whole table and slices out the requested page of
// DefaultPageSize items, along with navigation metadata.
func (r *Repo[ID]) Paginate(ctx context.Context, page int) (Page, error) {
	return r.PaginateSize(ctx, page, DefaultPageSize)
}

// PaginateSize is Paginate with an explicit page size.
func (r *Repo[ID]) PaginateSize(ctx context.Context, page, pageSize int) (Page, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	items, err := r.store.Scan(ctx, r.table, nil, nil)
	if err != nil {
		return Page{}, err
	}

	count := len(items)
	totalPages := count / pageSize
	if count%pageSize != 0 {
		totalPages++
	}

	if page < 1 || page > totalPages {
		return Page{}, &PageOutOfRangeError{Page: page, LastPage: totalPages}
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if end > count {
		end = count
	}

	result := Page{
		Items:      items[start:end],
		TotalPages: totalPages,
	}
	if page > 1 {
		result.PrevPage = page - 1
	}
	if page+1 <= totalPages {
		result.NextPage = page + 1
	}
	return result, nil
}
