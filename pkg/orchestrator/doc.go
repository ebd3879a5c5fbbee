// Package orchestrator drives the header of an editor screen: it derives the
// button set from form state, runs the save pipeline (validate, transform,
// persist, notify) and handles back navigation.
package orchestrator
