package model

// ZeroSchemaID is the parent id of a root schema.
const ZeroSchemaID SchemaID = "0x0000000000000000000000000000000000000000000000000000000000000000"

// DataID is the 32-byte key a record is stored under.
type DataID [32]byte

// SchemaRegistration asks a stream backend to register one schema.
type SchemaRegistration struct {
	Name           string
	Definition     string
	ParentSchemaID SchemaID
}

// DataStream is one encoded record submitted to a stream backend.
type DataStream struct {
	ID       DataID
	SchemaID SchemaID
	Data     []byte
}

// StoredRecord is one record as returned by a stream backend.
type StoredRecord struct {
	ID     DataID
	Data   []byte
	TxHash string
}

// RecordPage is one page of a publisher's records. NextCursor is empty on the last page.
type RecordPage struct {
	Records    []StoredRecord
	NextCursor string
}
