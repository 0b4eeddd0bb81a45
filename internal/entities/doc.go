// Package entities is the REST-backed record layer built on the data
// runtime.
//
// An entity table (CUE, see entities.cue) lists record types by kind and
// name. StoreConfig turns the table into a data.Config with generic
// selectors (getEntityRecord, getEntityRecords), resolvers that fetch
// through a Fetcher, save and delete thunks, and one shortcut selector,
// resolver and action per entity (getPostType, getTaxonomies, saveWidget,
// ...).
package entities
