package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/opensource-finance/harrier/internal/domain"
)

// MemoryRepository is a map-backed domain.Repository used for tests and the
// "memory" driver. RunInTx operates on a cloned state that is swapped in
// only when fn succeeds, so failed transactions leave nothing behind.
type MemoryRepository struct {
	mu   sync.RWMutex
	st   *memState
	inTx bool
}

type memState struct {
	customers     map[string]domain.Customer
	customerOrder []string

	transactions map[string]domain.Transaction
	txOrder      []string

	alerts []domain.Alert

	sars     map[string]domain.Sar
	sarOrder []string

	sections     map[string]domain.SarSection
	sectionOrder []string

	sentences     map[string]domain.SarSentence
	sentenceOrder []string

	audits   []domain.AuditLog
	versions []domain.SarVersion
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{st: newMemState()}
}

func newMemState() *memState {
	return &memState{
		customers:    make(map[string]domain.Customer),
		transactions: make(map[string]domain.Transaction),
		sars:         make(map[string]domain.Sar),
		sections:     make(map[string]domain.SarSection),
		sentences:    make(map[string]domain.SarSentence),
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		customers:     make(map[string]domain.Customer, len(s.customers)),
		customerOrder: append([]string(nil), s.customerOrder...),
		transactions:  make(map[string]domain.Transaction, len(s.transactions)),
		txOrder:       append([]string(nil), s.txOrder...),
		alerts:        append([]domain.Alert(nil), s.alerts...),
		sars:          make(map[string]domain.Sar, len(s.sars)),
		sarOrder:      append([]string(nil), s.sarOrder...),
		sections:      make(map[string]domain.SarSection, len(s.sections)),
		sectionOrder:  append([]string(nil), s.sectionOrder...),
		sentences:     make(map[string]domain.SarSentence, len(s.sentences)),
		sentenceOrder: append([]string(nil), s.sentenceOrder...),
		audits:        append([]domain.AuditLog(nil), s.audits...),
		versions:      append([]domain.SarVersion(nil), s.versions...),
	}
	for k, v := range s.customers {
		c.customers[k] = v
	}
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	for k, v := range s.sars {
		c.sars[k] = v
	}
	for k, v := range s.sections {
		c.sections[k] = v
	}
	for k, v := range s.sentences {
		c.sentences[k] = v
	}
	return c
}

func (m *MemoryRepository) read(fn func(*memState)) {
	if m.inTx {
		fn(m.st)
		return
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn(m.st)
}

func (m *MemoryRepository) write(fn func(*memState)) {
	if m.inTx {
		fn(m.st)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.st)
}

// RunInTx runs fn against a private clone of the state and publishes the
// clone atomically on success.
func (m *MemoryRepository) RunInTx(ctx context.Context, fn func(domain.Repository) error) error {
	if m.inTx {
		return fn(m)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	clone := m.st.clone()
	txRepo := &MemoryRepository{st: clone, inTx: true}
	if err := fn(txRepo); err != nil {
		return err
	}

	m.st = clone
	return nil
}

func (m *MemoryRepository) CreateCustomer(ctx context.Context, c *domain.Customer) error {
	m.write(func(st *memState) {
		st.customers[c.ID] = *c
		st.customerOrder = append(st.customerOrder, c.ID)
	})
	return nil
}

func (m *MemoryRepository) CreateCustomers(ctx context.Context, cs []*domain.Customer) error {
	for _, c := range cs {
		if err := m.CreateCustomer(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryRepository) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	var c domain.Customer
	var ok bool
	m.read(func(st *memState) {
		c, ok = st.customers[id]
	})
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (m *MemoryRepository) ListCustomers(ctx context.Context) ([]*domain.Customer, error) {
	var customers []*domain.Customer
	m.read(func(st *memState) {
		for _, id := range st.customerOrder {
			c := st.customers[id]
			customers = append(customers, &c)
		}
	})
	return customers, nil
}

func (m *MemoryRepository) CreateTransactions(ctx context.Context, txs []*domain.Transaction) error {
	m.write(func(st *memState) {
		for _, tx := range txs {
			st.transactions[tx.ID] = *tx
			st.txOrder = append(st.txOrder, tx.ID)
		}
	})
	return nil
}

func (m *MemoryRepository) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	var tx domain.Transaction
	var ok bool
	m.read(func(st *memState) {
		tx, ok = st.transactions[id]
	})
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &tx, nil
}

func (m *MemoryRepository) ListTransactions(ctx context.Context, customerID string) ([]*domain.Transaction, error) {
	var transactions []*domain.Transaction
	m.read(func(st *memState) {
		for _, id := range st.txOrder {
			tx := st.transactions[id]
			if tx.CustomerID == customerID {
				t := tx
				transactions = append(transactions, &t)
			}
		}
	})
	sort.SliceStable(transactions, func(i, j int) bool {
		return transactions[i].Timestamp.Before(transactions[j].Timestamp)
	})
	return transactions, nil
}

func (m *MemoryRepository) CreateAlerts(ctx context.Context, alerts []*domain.Alert) error {
	m.write(func(st *memState) {
		for _, a := range alerts {
			st.alerts = append(st.alerts, *a)
		}
	})
	return nil
}

func (m *MemoryRepository) ListAlerts(ctx context.Context, customerID string) ([]*domain.Alert, error) {
	var alerts []*domain.Alert
	m.read(func(st *memState) {
		for i := range st.alerts {
			tx, ok := st.transactions[st.alerts[i].TransactionID]
			if ok && tx.CustomerID == customerID {
				a := st.alerts[i]
				alerts = append(alerts, &a)
			}
		}
	})
	return alerts, nil
}

func (m *MemoryRepository) ListAlertsByTransactions(ctx context.Context, txIDs []string) ([]*domain.Alert, error) {
	wanted := make(map[string]bool, len(txIDs))
	for _, id := range txIDs {
		wanted[id] = true
	}

	var alerts []*domain.Alert
	m.read(func(st *memState) {
		for i := range st.alerts {
			if wanted[st.alerts[i].TransactionID] {
				a := st.alerts[i]
				alerts = append(alerts, &a)
			}
		}
	})
	return alerts, nil
}

func (m *MemoryRepository) CreateSar(ctx context.Context, sar *domain.Sar) error {
	m.write(func(st *memState) {
		st.sars[sar.ID] = *sar
		st.sarOrder = append(st.sarOrder, sar.ID)
	})
	return nil
}

func (m *MemoryRepository) GetSar(ctx context.Context, id string) (*domain.Sar, error) {
	var s domain.Sar
	var ok bool
	m.read(func(st *memState) {
		s, ok = st.sars[id]
	})
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (m *MemoryRepository) ListSars(ctx context.Context) ([]*domain.Sar, error) {
	var sars []*domain.Sar
	m.read(func(st *memState) {
		// Newest first.
		for i := len(st.sarOrder) - 1; i >= 0; i-- {
			s := st.sars[st.sarOrder[i]]
			sars = append(sars, &s)
		}
	})
	return sars, nil
}

func (m *MemoryRepository) UpdateSar(ctx context.Context, sar *domain.Sar) error {
	var found bool
	m.write(func(st *memState) {
		if _, found = st.sars[sar.ID]; found {
			st.sars[sar.ID] = *sar
		}
	})
	if !found {
		return domain.ErrNotFound
	}
	return nil
}

func (m *MemoryRepository) CreateSarSection(ctx context.Context, s *domain.SarSection) error {
	m.write(func(st *memState) {
		st.sections[s.ID] = *s
		st.sectionOrder = append(st.sectionOrder, s.ID)
	})
	return nil
}

func (m *MemoryRepository) GetSarSection(ctx context.Context, id string) (*domain.SarSection, error) {
	var s domain.SarSection
	var ok bool
	m.read(func(st *memState) {
		s, ok = st.sections[id]
	})
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (m *MemoryRepository) ListSarSections(ctx context.Context, sarID string) ([]*domain.SarSection, error) {
	var sections []*domain.SarSection
	m.read(func(st *memState) {
		for _, id := range st.sectionOrder {
			s := st.sections[id]
			if s.SarID == sarID {
				sec := s
				sections = append(sections, &sec)
			}
		}
	})
	sort.SliceStable(sections, func(i, j int) bool {
		return sections[i].Sequence < sections[j].Sequence
	})
	return sections, nil
}

func (m *MemoryRepository) UpdateSarSection(ctx context.Context, s *domain.SarSection) error {
	var found bool
	m.write(func(st *memState) {
		if _, found = st.sections[s.ID]; found {
			st.sections[s.ID] = *s
		}
	})
	if !found {
		return domain.ErrNotFound
	}
	return nil
}

func (m *MemoryRepository) CreateSarSentence(ctx context.Context, s *domain.SarSentence) error {
	m.write(func(st *memState) {
		st.sentences[s.ID] = *s
		st.sentenceOrder = append(st.sentenceOrder, s.ID)
	})
	return nil
}

func (m *MemoryRepository) GetSarSentence(ctx context.Context, id string) (*domain.SarSentence, error) {
	var s domain.SarSentence
	var ok bool
	m.read(func(st *memState) {
		s, ok = st.sentences[id]
	})
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (m *MemoryRepository) ListSarSentences(ctx context.Context, sectionID string) ([]*domain.SarSentence, error) {
	var sentences []*domain.SarSentence
	m.read(func(st *memState) {
		for _, id := range st.sentenceOrder {
			s := st.sentences[id]
			if s.SectionID == sectionID {
				sent := s
				sentences = append(sentences, &sent)
			}
		}
	})
	sort.SliceStable(sentences, func(i, j int) bool {
		return sentences[i].Sequence < sentences[j].Sequence
	})
	return sentences, nil
}

func (m *MemoryRepository) CreateAuditLog(ctx context.Context, log *domain.AuditLog) error {
	m.write(func(st *memState) {
		st.audits = append(st.audits, *log)
	})
	return nil
}

func (m *MemoryRepository) ListAuditLogs(ctx context.Context, sarID string) ([]*domain.AuditLog, error) {
	var logs []*domain.AuditLog
	m.read(func(st *memState) {
		// Newest first; insertion order breaks timestamp ties.
		for i := len(st.audits) - 1; i >= 0; i-- {
			if st.audits[i].SarID == sarID {
				l := st.audits[i]
				logs = append(logs, &l)
			}
		}
	})
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].Timestamp.After(logs[j].Timestamp)
	})
	return logs, nil
}

func (m *MemoryRepository) CreateSarVersion(ctx context.Context, v *domain.SarVersion) error {
	m.write(func(st *memState) {
		st.versions = append(st.versions, *v)
	})
	return nil
}

func (m *MemoryRepository) ListSarVersions(ctx context.Context, sarID string) ([]*domain.SarVersion, error) {
	var versions []*domain.SarVersion
	m.read(func(st *memState) {
		for i := range st.versions {
			if st.versions[i].SarID == sarID {
				v := st.versions[i]
				versions = append(versions, &v)
			}
		}
	})
	sort.SliceStable(versions, func(i, j int) bool {
		return versions[i].VersionNumber > versions[j].VersionNumber
	})
	return versions, nil
}

func (m *MemoryRepository) Ping(ctx context.Context) error {
	return nil
}

func (m *MemoryRepository) Close() error {
	return nil
}
