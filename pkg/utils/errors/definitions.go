package errors

import "net/http"

// 通用错误 (服务码 00)
var (
	ErrRouteNotFound   = Define(ServiceCommon, CategoryResource, 1, "Route not found", "路由不存在")
	ErrRequestTimeout  = DefineStatus(ServiceCommon, CategoryTimeout, 1, http.StatusRequestTimeout, "Request timeout", "请求超时")
	ErrTooManyRequests = Define(ServiceCommon, CategoryRateLimit, 1, "Too many requests", "请求过于频繁")
	ErrInternal        = Define(ServiceCommon, CategoryInternal, 1, "Internal server error", "服务器内部错误")
	ErrPanic           = Define(ServiceCommon, CategoryInternal, 2, "Internal panic", "服务内部异常")
	ErrNotImplemented  = Define(ServiceCommon, CategoryNotImpl, 1, "not_implemented", "功能未实现")
)

// agriqa 业务错误 (服务码 21)
var (
	// ErrInvalidQuery 问题为空或超长。
	ErrInvalidQuery = Define(ServiceAgriQA, CategoryRequest, 1, "Invalid query", "查询内容无效")
	// ErrInvalidFilter 过滤条件的列不存在或取值类型不支持。
	ErrInvalidFilter = Define(ServiceAgriQA, CategoryRequest, 2, "Invalid dataset filter", "数据集过滤条件无效")

	// ErrUnknownDataset 数据集 key 不在目录中。
	ErrUnknownDataset = Define(ServiceAgriQA, CategoryResource, 1, "Dataset not found", "数据集不存在")

	// ErrQueryFailed 问答流程无法恢复的失败，不返回部分结果。
	ErrQueryFailed = Define(ServiceAgriQA, CategoryInternal, 1, "Failed to process query", "处理查询失败")
	ErrIndexFailed = Define(ServiceAgriQA, CategoryInternal, 2, "Relevance index failure", "相关性索引失败")

	ErrSnapshotStore = Define(ServiceAgriQA, CategoryDatabase, 1, "Dataset snapshot store failure", "数据集快照存储失败")
	ErrCacheFailed   = Define(ServiceAgriQA, CategoryCache, 1, "Cache operation failed", "缓存操作失败")

	// ErrRemoteFetch 远程数据源失败，调用方通常回退到合成数据。
	ErrRemoteFetch = Define(ServiceAgriQA, CategoryNetwork, 1, "Remote dataset fetch failed", "远程数据获取失败")
)
