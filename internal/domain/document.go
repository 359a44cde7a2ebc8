package domain

import "time"

// Collection selects the real or the decoy set of document records.
type Collection string

const (
	CollectionReal  Collection = "real"
	CollectionDecoy Collection = "decoy"
)

// ShardRef locates one shard of a document. Index is known only locally.
type ShardRef struct {
	ShardID string `json:"shard_id"`
	Index   int    `json:"index"`
}

// DocumentRecord is local, non-exported metadata for one stored document.
// WrappedFEK is the only link between the document and the master key.
type DocumentRecord struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"display_name"`
	MimeType    string     `json:"mime_type"`
	Size        int64      `json:"size"`
	CreatedAt   time.Time  `json:"created_at"`
	WrappedFEK  []byte     `json:"fek_wrapped"`
	FEKWrapIV   []byte     `json:"fek_wrap_iv"`
	DataIV      []byte     `json:"data_iv"`
	ShardRefs   []ShardRef `json:"shard_refs"`
}

// VaultMetadata is everything persisted in ordinary local storage.
type VaultMetadata struct {
	Documents      []*DocumentRecord `json:"documents"`
	DecoyDocuments []*DocumentRecord `json:"decoy_documents"`
	LastUpdated    time.Time         `json:"last_updated"`
}

// Records returns the document records of collection c.
func (m *VaultMetadata) Records(c Collection) []*DocumentRecord {
	if c == CollectionDecoy {
		return m.DecoyDocuments
	}
	return m.Documents
}

// Find returns the record with id in collection c, or nil.
func (m *VaultMetadata) Find(c Collection, id string) *DocumentRecord {
	for _, d := range m.Records(c) {
		if d.ID == id {
			return d
		}
	}
	return nil
}

// Set replaces the records of collection c.
func (m *VaultMetadata) Set(c Collection, docs []*DocumentRecord) {
	if c == CollectionDecoy {
		m.DecoyDocuments = docs
	} else {
		m.Documents = docs
	}
	m.LastUpdated = time.Now()
}

// Add appends doc to collection c.
func (m *VaultMetadata) Add(c Collection, doc *DocumentRecord) {
	if c == CollectionDecoy {
		m.DecoyDocuments = append(m.DecoyDocuments, doc)
	} else {
		m.Documents = append(m.Documents, doc)
	}
	m.LastUpdated = time.Now()
}

// Remove deletes the record with id from collection c and returns it.
func (m *VaultMetadata) Remove(c Collection, id string) *DocumentRecord {
	records := m.Records(c)
	for i, d := range records {
		if d.ID != id {
			continue
		}
		records = append(records[:i:i], records[i+1:]...)
		if c == CollectionDecoy {
			m.DecoyDocuments = records
		} else {
			m.Documents = records
		}
		m.LastUpdated = time.Now()
		return d
	}
	return nil
}
