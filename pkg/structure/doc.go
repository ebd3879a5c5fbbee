// Package structure manages repeating sub-structures of a form: panels of
// structured list items (add, remove, duplicate, reorder) and repeatable
// field groups that the form stores under suffixed names (name, name1,
// name2...). It also converts both shapes to and from the backend record at
// the save boundary.
package structure
