// Package fs persists bot state on the local filesystem.
package fs
