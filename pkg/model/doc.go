// Package model defines the declarative descriptors consumed by the editor and
// table engines. A Field carries the type tag from the closed FieldType set,
// its label and constraints, an OptionSource that is either inline or a key
// into the process-wide options dictionary, dependency names gating derived
// content, and the nested configuration used by groups and structured lists.
//
// Field names must be unique within the flattened field set handed to one
// form; duplicates collide in Values and the last writer wins. Definition
// linting reports such collisions.
package model
