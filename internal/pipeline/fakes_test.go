package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"fundsync/internal/model"
	"fundsync/internal/storage"
	"fundsync/internal/venue"
)

// fakeAdapter scripts a venue for pipeline tests.
type fakeAdapter struct {
	mu sync.Mutex

	code     model.VenueCode
	settings venue.Settings
	pairs    []venue.SymbolPair
	listErr  error

	// history per raw name, ascending; ListHistory filters by startTime
	history map[string][]venue.FundingObservation
	// latest per raw name
	latest map[string]*venue.FundingObservation
	// scripted per-call errors for Latest, consumed in order
	latestErrs map[string][]error

	historyCalls []historyCall
	latestCalls  map[string]int
}

type historyCall struct {
	symbol    string
	startTime time.Time
}

func newFakeAdapter(code model.VenueCode) *fakeAdapter {
	return &fakeAdapter{
		code: code,
		settings: venue.Settings{
			HistoryParallelism: 2,
			OnlineParallelism:  1,
			HistoryBatchSize:   10,
			PageLimit:          1000,
		},
		history:     make(map[string][]venue.FundingObservation),
		latest:      make(map[string]*venue.FundingObservation),
		latestErrs:  make(map[string][]error),
		latestCalls: make(map[string]int),
	}
}

func (f *fakeAdapter) Code() model.VenueCode    { return f.code }
func (f *fakeAdapter) Settings() venue.Settings { return f.settings }

func (f *fakeAdapter) ListActivePerpetuals(ctx context.Context) ([]venue.SymbolPair, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.pairs, nil
}

func (f *fakeAdapter) ListHistory(ctx context.Context, symbol string, startTime time.Time) ([]venue.FundingObservation, error) {
	f.mu.Lock()
	f.historyCalls = append(f.historyCalls, historyCall{symbol: symbol, startTime: startTime})
	f.mu.Unlock()

	var out []venue.FundingObservation
	for _, obs := range f.history[symbol] {
		if !startTime.IsZero() && obs.FundingTime.Before(startTime) {
			continue
		}
		out = append(out, obs)
	}
	return out, nil
}

func (f *fakeAdapter) Latest(ctx context.Context, symbol string) (*venue.FundingObservation, error) {
	f.mu.Lock()
	f.latestCalls[symbol]++
	if errs := f.latestErrs[symbol]; len(errs) > 0 {
		err := errs[0]
		f.latestErrs[symbol] = errs[1:]
		f.mu.Unlock()
		return nil, err
	}
	f.mu.Unlock()

	obs, ok := f.latest[symbol]
	if !ok {
		return nil, venue.ErrEmptyResult
	}
	return obs, nil
}

func (f *fakeAdapter) PacingDelay(batchRows int) time.Duration { return 0 }

func (f *fakeAdapter) historyCallFor(symbol string) (historyCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.historyCalls {
		if c.symbol == symbol {
			return c, true
		}
	}
	return historyCall{}, false
}

// fakeVenueStore maps codes to seeded venue rows.
type fakeVenueStore struct {
	venues map[model.VenueCode]*model.Venue
}

func newFakeVenueStore(codes ...model.VenueCode) *fakeVenueStore {
	s := &fakeVenueStore{venues: make(map[model.VenueCode]*model.Venue)}
	for _, code := range codes {
		s.venues[code] = &model.Venue{ID: uuid.New(), Code: code}
	}
	return s
}

func (s *fakeVenueStore) GetByCode(ctx context.Context, code model.VenueCode) (*model.Venue, error) {
	return s.venues[code], nil
}

// fakeHistoryStore records bulk inserts.
type fakeHistoryStore struct {
	mu        sync.Mutex
	count     int64
	latest    []model.HistoryRecord
	inserts   [][]model.HistoryRecord
	insertErr error
}

func (s *fakeHistoryStore) CountByVenue(ctx context.Context, venueID uuid.UUID) (int64, error) {
	return s.count, nil
}

func (s *fakeHistoryStore) GetLatestByVenue(ctx context.Context, venueID uuid.UUID) ([]model.HistoryRecord, error) {
	return s.latest, nil
}

func (s *fakeHistoryStore) BulkInsert(ctx context.Context, rows []model.HistoryRecord) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts = append(s.inserts, rows)
	return nil
}

func (s *fakeHistoryStore) insertedRows() []model.HistoryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []model.HistoryRecord
	for _, batch := range s.inserts {
		all = append(all, batch...)
	}
	return all
}

// fakeOnlineStore hands out recording units of work.
type fakeOnlineStore struct {
	records []model.OnlineRecord
	uows    []*fakeUnitOfWork
	saveErr error
}

func (s *fakeOnlineStore) GetByVenue(ctx context.Context, venueID uuid.UUID) ([]model.OnlineRecord, error) {
	return s.records, nil
}

func (s *fakeOnlineStore) NewUnitOfWork() storage.UnitOfWork {
	uow := &fakeUnitOfWork{saveErr: s.saveErr}
	s.uows = append(s.uows, uow)
	return uow
}

type fakeUnitOfWork struct {
	creates []model.OnlineRecord
	updates []model.OnlineRecord
	saves   int
	saveErr error
}

func (u *fakeUnitOfWork) AddRange(rows []model.OnlineRecord)    { u.creates = append(u.creates, rows...) }
func (u *fakeUnitOfWork) UpdateRange(rows []model.OnlineRecord) { u.updates = append(u.updates, rows...) }

func (u *fakeUnitOfWork) Save(ctx context.Context) error {
	u.saves++
	return u.saveErr
}
