package core

// BeforeInserter runs on each entity before it is projected into a row.
// Changes made by the hook are part of the inserted row.
type BeforeInserter interface{ BeforeInsert() error }

// AfterInserter runs on each entity once every batch of the call was written.
// Inside DB.BulkInsert an error rolls the whole call back.
type AfterInserter interface{ AfterInsert() error }
