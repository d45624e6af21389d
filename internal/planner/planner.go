// Package planner compiles data-connector query requests into Neo4j GraphQL
// query text. It validates every collection, field and relationship reference
// against the schema descriptor and rejects requests the graph dialect cannot
// express, so a successful plan is always executable as written.
package planner
