// Package middleware 提供 agriqa HTTP 服务使用的 gin 中间件。
//
// 中间件按 mwopts.Options.Middleware 给出的顺序挂载：
//
//	recovery -> request-id -> logger -> cors -> timeout
//
// 错误响应统一通过 response.Fail 输出。
package middleware
