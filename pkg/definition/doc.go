// Package definition loads the declarative documents that describe editor
// forms and list tables. A document is JSON or YAML with two top level maps,
// `forms` and `tables`, keyed by id:
//
//	forms:
//	  exercise:
//	    title: Exercise
//	    header: {path: /exercise/edit}
//	    fields:
//	      - {name: name, label: Name, required: true}
//	tables:
//	  exercises:
//	    columns:
//	      - {title: Name, dataIndex: name}
//
// Lint reports problems that loading tolerates, such as unknown field types
// or option keys missing from the dictionary.
package definition
