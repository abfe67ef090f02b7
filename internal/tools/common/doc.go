// Package common holds helpers shared by the tool packages: account
// resolution and the instrumentation wrapper applied to every tool handler.
package common
