// Package dag validates workflow stage graphs and orders them for execution.
//
// Validate reports structural errors (missing identifiers, duplicate stage
// ids, unknown dependencies, cycles) and warnings. TopologicalOrder yields the
// deterministic sequential order used by the engine. Tracker hands out stages
// as their dependencies complete, for parallel execution.
package dag
