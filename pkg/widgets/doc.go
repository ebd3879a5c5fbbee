// Package widgets is the field registry: it maps each field type of the
// closed set to an adapter that knows the type's component, default value
// shape, runtime normalisation and render props.
package widgets
