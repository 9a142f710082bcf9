// Package executor serializes object graphs against a query tree, batching
// every preload so that each distinct (preloader, arguments) pair runs once
// per type group per level.
//
// # Overview
//
// The executor works level by level. A level is a set of input objects and
// the query node selecting fields on them. For each level it:
//
//  1. Groups the objects by Go type. Objects whose type is not registered
//     are emitted as-is and never recursed into.
//  2. Expands a wildcard child into every public field of the group's table,
//     minus the only/except restriction inherited from the parent field.
//     Explicitly selected fields keep their aliases and arguments.
//  3. Validates every selected field of every group: the field must exist
//     under the active namespaces, must not be private, must satisfy the
//     restriction, and its arguments must match its declared shape. Nothing
//     has run yet when validation fails.
//  4. Asks storage to eager-load the relations named by Includes options.
//  5. Applies object-level permission. When a permission field is active and
//     registered on the group's table, its preloaders run once for the whole
//     group and its resolver runs per object. Denied objects are dropped.
//  6. Runs the deduplicated preloaders of all selected fields, plus those of
//     a registered "defaults" field. With WithConcurrency they run in an
//     errgroup; resolvers do not start until all of them have returned.
//  7. Evaluates field permission gates, substituting the fallback value for
//     denied objects.
//  8. Resolves each field per object.
//  9. Classifies results: registry.Refs, registry.Ref, registry.Composite and
//     registry.Custom carry objects into the next level; anything else is
//     emitted as a scalar.
//  10. Recurses once per (group, field) with all child objects of that field,
//     passing the field's only/except and its scoped access mode down.
//  11. Assembles one output map per surviving object.
//
// # Permission
//
// Object-level permission defaults to the field named "permission". A field
// with ScopedAccess switches the checked field for its subtree and
// NoScopedAccess disables checking below it. Denied objects disappear from
// lists, serialize to null through a Ref, reach Composite.Build as nil and are
// missing from Custom lookups. Denial is never an error.
//
// # Errors
//
// Unknown fields, private fields, restricted fields and malformed arguments
// fail the whole call with registry.ErrInvalidQuery. Errors returned by
// preloaders, resolvers and storage abort the call as well; no partial output
// is returned.
package executor
