// Package store 实现数据集存储与向量存储。
//
// DatasetStore 负责数据集快照的拉取、缓存与过滤查询：
//   - 快照在 TTL 内直接复用，过期或强制刷新时访问远程数据源
//   - 远程失败时回退到确定性合成数据，已知数据集的 Fetch 不会因远程失败而出错
//   - 快照通过 SnapshotRepository 持久化（文件或数据库）
//
// VectorStore 为相关性索引提供文档存储与近邻检索，
// 包括基于 Milvus 的实现和进程内的暴力检索实现。
package store
