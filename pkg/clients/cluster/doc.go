// Package cluster deploys bundle plugins as entando.org/v1 custom resources.
//
// A plugin becomes an EntandoPlugin resource plus an EntandoAppPluginLink
// binding it to the application. Both are applied create-or-update, and
// deleting a resource that is already gone succeeds.
package cluster
