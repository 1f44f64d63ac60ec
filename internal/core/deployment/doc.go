// Package deployment provides pure functions for per-deployment naming.
//
// Every deployment attempt of a template gets its own namespace token. The
// token suffixes the template's named volumes (see package compose) and the
// compose project name, so two deployments of one template never share state
// on the container engine.
//
// # Functions
//
//   - Tokens: Generate namespace tokens (NewNamespaceToken)
//   - Naming: Derive engine-side names (ProjectName, EngineVolumeName)
//   - Rendering: Namespace a template and check the result (Render)
//
// # Usage
//
//	token := deployment.NewNamespaceToken()
//	rendering, err := deployment.Render(template.ComposeSpec, deployment.RenderOptions{
//	    Slug:  template.Slug,
//	    Token: token,
//	})
package deployment
