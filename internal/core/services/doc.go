// Package services implements the driving port interfaces: ingestion,
// retrieval, query answering and process tracking. A query flows
// through intent parsing, plan generation, wave-based tool execution
// and citation-enforced aggregation; ingestion flows through scan,
// normalise, chunk, embed and index stages. Services orchestrate
// driven ports and never touch infrastructure directly.
package services
