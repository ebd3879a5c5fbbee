// Package form implements the state controller behind one editor: seeding,
// dirty tracking, subset validation and change notification.
package form
